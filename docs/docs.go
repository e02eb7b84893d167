// Package docs registers the workerd OpenAPI description with swag.
// Regenerate with `swag init -g cmd/workerd/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["llm"],
                "summary": "Generate a response",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/status/{model}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["llm"],
                "summary": "Current status of a model",
                "parameters": [{"type": "string", "in": "path", "name": "model", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/status_history/{model}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["llm"],
                "summary": "Every status a model has entered",
                "parameters": [{"type": "string", "in": "path", "name": "model", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusHistoryResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/tags": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ollama"],
                "summary": "List models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TagsResponse"}}}
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "error": {"type": "string"}}
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string"},
                "prompt": {"type": "string"},
                "images": {"type": "array", "items": {"type": "string"}},
                "options": {"type": "object"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {"response": {"type": "string"}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "types.StatusHistoryResponse": {
            "type": "object",
            "properties": {"status_history": {"type": "array", "items": {"type": "string"}}}
        },
        "types.TagsResponse": {
            "type": "object",
            "properties": {"models": {"type": "array", "items": {"type": "object"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "workerd API",
	Description:      "Supervises LLM and tokenizer worker processes and answers prompts over HTTP.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
