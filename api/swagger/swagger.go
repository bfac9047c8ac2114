package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PulseFit Booking API",
        "description": "Trainer availability and session booking platform",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token management"},
        {"name": "Availability", "description": "Slot verdicts and enumeration"},
        {"name": "Bookings", "description": "Booking lifecycle"},
        {"name": "Schedule", "description": "Trainer schedule configuration and exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability/check": {
            "post": {
                "tags": ["Availability"],
                "summary": "Check slot availability",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "Structured verdict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Trainer not found"}
                }
            }
        },
        "/trainers/{trainerId}/slots": {
            "get": {
                "tags": ["Availability"],
                "summary": "List available slots",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "start_date", "in": "query", "required": true, "type": "string"},
                    {"name": "end_date", "in": "query", "required": true, "type": "string"},
                    {"name": "duration_minutes", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "User is not a trainer"}
                }
            }
        },
        "/trainers/{trainerId}/availability": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List weekly availability",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedule"],
                "summary": "Set weekly availability for one weekday",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertWeeklyAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainers/{trainerId}/availability/{day}": {
            "delete": {
                "tags": ["Schedule"],
                "summary": "Remove weekly availability for one weekday",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "day", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/trainers/{trainerId}/blocked-times": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List blocked intervals",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "start_date", "in": "query", "required": true, "type": "string"},
                    {"name": "end_date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedule"],
                "summary": "Block out a date-specific interval",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBlockedTimeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainers/{trainerId}/blocked-times/{id}": {
            "delete": {
                "tags": ["Schedule"],
                "summary": "Remove a blocked interval",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/trainers/{trainerId}/capacity": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Get capacity config",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedule"],
                "summary": "Set capacity config",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertCapacityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainers/{trainerId}/booking-rules": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Get booking rules",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedule"],
                "summary": "Set booking rules",
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertBookingRulesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainers/{trainerId}/schedule/export": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Export the trainer's schedule",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "trainerId", "in": "path", "required": true, "type": "string"},
                    {"name": "start_date", "in": "query", "required": true, "type": "string"},
                    {"name": "end_date", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered document"}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot unavailable"}
                }
            },
            "get": {
                "tags": ["Bookings"],
                "summary": "List own bookings",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get one booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a participant"}
                }
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Cancel a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already cancelled"}
                }
            }
        },
        "/bookings/{id}/confirm": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Confirm a pending booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Trainer or admin only"}
                }
            }
        },
        "/bookings/{id}/reschedule": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Reschedule a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "New slot unavailable"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "CheckAvailabilityRequest": {
            "type": "object",
            "required": ["trainer_id", "date", "start_time", "end_time"],
            "properties": {
                "trainer_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-03-10"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:00"},
                "exclude_booking_id": {"type": "string"}
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "required": ["trainer_id", "date", "start_time", "end_time"],
            "properties": {
                "trainer_id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "session_type": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "RescheduleBookingRequest": {
            "type": "object",
            "required": ["date", "start_time", "end_time"],
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            }
        },
        "UpsertWeeklyAvailabilityRequest": {
            "type": "object",
            "required": ["day_of_week"],
            "properties": {
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "morning_available": {"type": "boolean"},
                "morning_start": {"type": "string"},
                "morning_end": {"type": "string"},
                "evening_available": {"type": "boolean"},
                "evening_start": {"type": "string"},
                "evening_end": {"type": "string"}
            }
        },
        "CreateBlockedTimeRequest": {
            "type": "object",
            "required": ["date", "start_time", "end_time"],
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "UpsertCapacityRequest": {
            "type": "object",
            "properties": {
                "max_daily_sessions": {"type": "integer"},
                "max_weekly_sessions": {"type": "integer"},
                "session_duration_minutes": {"type": "integer"},
                "break_between_sessions_minutes": {"type": "integer"}
            }
        },
        "UpsertBookingRulesRequest": {
            "type": "object",
            "properties": {
                "allow_self_booking": {"type": "boolean"},
                "allow_weekend_booking": {"type": "boolean"},
                "require_approval": {"type": "boolean"},
                "advance_booking_days": {"type": "integer"},
                "earliest_booking_time": {"type": "string"},
                "latest_booking_time": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
