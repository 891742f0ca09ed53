package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "QR Attendance API",
        "description": "Classroom attendance tracking via short-lived QR scan tokens",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Admin and teacher login"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Teachers", "description": "Teaching roster management"},
        {"name": "Sessions", "description": "Class session scheduling and attendance"},
        {"name": "QR", "description": "Scan token issuance"},
        {"name": "Scan", "description": "Public student scan flow"},
        {"name": "Exports", "description": "Attendance sheet downloads"},
        {"name": "Dashboard", "description": "Summaries and daily views"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/scan": {
            "get": {
                "tags": ["Scan"],
                "summary": "Validate scanned token",
                "parameters": [
                    {"name": "sid", "in": "query", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Secret mismatch"},
                    "404": {"description": "Unknown token"},
                    "410": {"description": "Superseded or expired token"}
                }
            },
            "post": {
                "tags": ["Scan"],
                "summary": "Submit attendance",
                "parameters": [
                    {"name": "sid", "in": "query", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Attendance recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already marked"},
                    "422": {"description": "Student not eligible"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate admin or teacher",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current principal",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "batch", "in": "query", "type": "string"},
                    {"name": "course", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Enroll student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate roll number"}
                }
            }
        },
        "/api/v1/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Remove student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Teachers"],
                "summary": "Register teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate username"}
                }
            }
        },
        "/api/v1/teachers/{id}": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Get teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List class sessions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "date", "in": "query", "type": "string"},
                    {"name": "course", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Schedule class session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get class session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/sessions/{id}/attendance": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List session attendance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Session belongs to another teacher"}
                }
            }
        },
        "/api/v1/sessions/{id}/qr": {
            "post": {
                "tags": ["QR"],
                "summary": "Issue QR token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found"}
                }
            }
        },
        "/api/v1/sessions/{id}/qr/image": {
            "get": {
                "tags": ["QR"],
                "summary": "Render active QR image",
                "security": [{"BearerAuth": []}],
                "produces": ["image/png"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PNG image"},
                    "404": {"description": "No active token"}
                }
            }
        },
        "/api/v1/sessions/{id}/export/csv": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export attendance CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV download"}
                }
            }
        },
        "/api/v1/sessions/{id}/export/pdf": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export attendance PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF download"}
                }
            }
        },
        "/api/v1/export/csv": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export full attendance ledger CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV download"}
                }
            }
        },
        "/api/v1/export/pdf": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export full attendance ledger PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF download"}
                }
            }
        },
        "/api/v1/dashboard/summary": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Admin dashboard summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/dashboard/my-sessions": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Teacher's sessions today",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["ADMIN", "TEACHER"]},
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["role", "username", "password"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "roll_number": {"type": "string"},
                "full_name": {"type": "string"},
                "batch": {"type": "string"},
                "course": {"type": "string"},
                "year": {"type": "string"}
            },
            "required": ["roll_number", "full_name", "batch", "course"]
        },
        "CreateTeacherRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["username", "password", "full_name"]
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "course": {"type": "string"},
                "batch": {"type": "string"},
                "room": {"type": "string"},
                "teacher_id": {"type": "string"},
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            },
            "required": ["course", "batch", "teacher_id", "date", "start_time", "end_time"]
        },
        "ScanRequest": {
            "type": "object",
            "properties": {
                "roll_number": {"type": "string"}
            },
            "required": ["roll_number"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
