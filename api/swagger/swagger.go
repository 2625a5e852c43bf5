package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Class Scheduler API",
        "description": "Forms progress-aligned classes, books time slots and assigns teachers",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scheduling", "description": "Scheduling runs, conflicts and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/scheduling/runs": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Run the class scheduler for a course",
                "description": "persist=false returns a preview; persist=true books slots and stores the classes.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RunSchedulingRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Persisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or weights", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A slot was booked concurrently", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed course snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/batches": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Queue background scheduling runs",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/BatchSchedulingRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Batch scheduling disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/conflicts": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "Detect conflicts in a persisted course schedule",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "courseId", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/classes/{id}/status": {
            "patch": {
                "tags": ["Scheduling"],
                "summary": "Confirm or cancel a scheduled class",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateClassStatusRequest"}}
                ],
                "responses": {
                    "204": {"description": "Updated"},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cancelled class cannot be reinstated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/export": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "Export a course schedule",
                "produces": ["text/csv", "application/pdf", "application/json"],
                "parameters": [
                    {"in": "query", "name": "courseId", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]},
                    {"in": "query", "name": "delivery", "type": "string", "enum": ["inline", "link"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "201": {"description": "Signed link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No persisted schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/export/files/{token}": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "Download a stored export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "404": {"description": "Link expired or unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RunSchedulingRequest": {
            "type": "object",
            "required": ["courseId"],
            "properties": {
                "courseId": {"type": "string"},
                "persist": {"type": "boolean"},
                "constraints": {
                    "type": "object",
                    "properties": {
                        "maxStudentsPerClass": {"type": "integer"},
                        "maxConcurrentClassesPerTeacher": {"type": "integer"},
                        "maxContentPerClass": {"type": "integer"}
                    }
                },
                "weights": {
                    "type": "object",
                    "properties": {
                        "contentProgression": {"type": "number"},
                        "studentAvailability": {"type": "number"},
                        "classSizeOptimization": {"type": "number"},
                        "scheduleContinuity": {"type": "number"}
                    }
                }
            }
        },
        "BatchSchedulingRequest": {
            "type": "object",
            "required": ["courseIds"],
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "string"}},
                "persist": {"type": "boolean"}
            }
        },
        "UpdateClassStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["scheduled", "confirmed", "cancelled"]}
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
