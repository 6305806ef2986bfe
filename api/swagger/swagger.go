package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Four-Set Checker API",
        "description": "Validation records, drill-down summaries, merge conflict reports and grade rebuilds.",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Students", "description": "Per-student validation and merge conflicts"},
        {"name": "Summaries", "description": "Class, school, group and district drill-down"},
        {"name": "Rebuilds", "description": "Queued bulk recomputation of a grade"}
    ],
    "paths": {
        "/students/{id}/validation": {
            "get": {
                "tags": ["Students"],
                "summary": "Student validation record",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "grade", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "grade missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No record", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/recompute": {
            "post": {
                "tags": ["Students"],
                "summary": "Recompute a student",
                "description": "Re-merges and re-validates the student in every grade found in their answers, then refreshes each aggregate above them. Requires the operator role.",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not on roster", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Cross-grade contamination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/conflicts": {
            "get": {
                "tags": ["Students"],
                "summary": "Merge conflict report",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "grade", "in": "query", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report or attachment"},
                    "404": {"description": "No report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/summaries/{level}/{id}": {
            "get": {
                "tags": ["Summaries"],
                "summary": "Aggregate summary",
                "parameters": [
                    {"name": "level", "in": "path", "type": "string", "required": true, "enum": ["class", "school", "group", "district"]},
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "grade", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rebuilds": {
            "post": {
                "tags": ["Rebuilds"],
                "summary": "Queue a grade rebuild",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RebuildRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rebuilds/{id}": {
            "get": {
                "tags": ["Rebuilds"],
                "summary": "Rebuild job status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RebuildRequest": {
            "type": "object",
            "required": ["grade"],
            "properties": {
                "grade": {"type": "string"},
                "resume_run_id": {"type": "string"}
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
