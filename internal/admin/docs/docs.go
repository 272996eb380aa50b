// Package docs holds the OpenAPI document of the admin API, served under
// /swagger. Regenerate it with go generate ./cmd/logtrigger after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/rules": {
            "get": {
                "description": "All rules of the active table in definition order, with their action steps",
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "List rules",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {"$ref": "#/definitions/admin.RuleView"}
                        }
                    }
                }
            }
        },
        "/api/v1/rules/reload": {
            "post": {
                "description": "Re-read the rule definitions and swap the active table",
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "Reload rules",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/reload.Result"}
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    }
                }
            }
        },
        "/api/v1/rules/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "Get a rule",
                "parameters": [
                    {"type": "string", "description": "Rule name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/admin.RuleView"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    }
                }
            }
        },
        "/api/v1/rules/{name}/enabled": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "Enable or disable a rule",
                "parameters": [
                    {"type": "string", "description": "Rule name", "name": "name", "in": "path", "required": true},
                    {
                        "description": "New state",
                        "name": "enabled",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/admin.enabledRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/admin.RuleView"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    }
                }
            }
        },
        "/api/v1/rules/{name}/steps/{index}/enabled": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rules"],
                "summary": "Enable or disable an action step",
                "parameters": [
                    {"type": "string", "description": "Rule name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Step index", "name": "index", "in": "path", "required": true},
                    {
                        "description": "New state",
                        "name": "enabled",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/admin.enabledRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/admin.RuleView"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/errors.ErrorResponse"}
                    }
                }
            }
        },
        "/api/v1/stats": {
            "get": {
                "description": "Progress, counters and rule totals of the running pipeline",
                "produces": ["application/json"],
                "tags": ["stats"],
                "summary": "Pipeline counters",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/admin.StatsResponse"}
                    }
                }
            }
        },
        "/health": {
            "get": {
                "description": "Aggregated result of the registered health checks",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/health.Health"}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"$ref": "#/definitions/health.Health"}
                    }
                }
            }
        }
    },
    "definitions": {
        "admin.RuleView": {
            "type": "object",
            "properties": {
                "cooldown_ms": {"type": "integer"},
                "description": {"type": "string"},
                "enabled": {"type": "boolean"},
                "error": {"type": "string"},
                "last_fired": {"type": "string"},
                "name": {"type": "string"},
                "pattern": {"type": "string"},
                "steps": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/rules.StepTemplate"}
                }
            }
        },
        "admin.StatsResponse": {
            "type": "object",
            "properties": {
                "active_rules": {"type": "integer"},
                "counters": {"$ref": "#/definitions/pipeline.StatsSnapshot"},
                "last_reload": {"$ref": "#/definitions/reload.Result"},
                "matches_total": {"type": "integer"},
                "pipeline": {"$ref": "#/definitions/pipeline.Progress"},
                "rules": {"type": "integer"},
                "uptime": {"type": "string"}
            }
        },
        "admin.enabledRequest": {
            "type": "object",
            "required": ["enabled"],
            "properties": {
                "enabled": {"type": "boolean"}
            }
        },
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {"type": "object", "additionalProperties": {}},
                "error": {"type": "string"},
                "error_code": {"type": "string"}
            }
        },
        "health.CheckResult": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "health.Health": {
            "type": "object",
            "properties": {
                "checks": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/health.CheckResult"}
                },
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "pipeline.Progress": {
            "type": "object",
            "properties": {
                "last_sequence": {"type": "integer"},
                "match_queue_depth": {"type": "integer"},
                "next_expected": {"type": "integer"},
                "parallel": {"type": "boolean"},
                "queue_depth": {"type": "integer"},
                "reorder_pending": {"type": "integer"},
                "stalled": {"type": "boolean"},
                "stalled_for": {"type": "string"},
                "state": {"type": "string"},
                "workers": {"type": "integer"}
            }
        },
        "pipeline.StatsSnapshot": {
            "type": "object",
            "properties": {
                "actions_executed": {"type": "integer"},
                "actions_failed": {"type": "integer"},
                "firings_dropped": {"type": "integer"},
                "firings_executed": {"type": "integer"},
                "firings_failed": {"type": "integer"},
                "firings_matched": {"type": "integer"},
                "firings_suppressed": {"type": "integer"},
                "lines_dropped": {"type": "integer"},
                "lines_processed": {"type": "integer"},
                "worker_panics": {"type": "integer"}
            }
        },
        "reload.Result": {
            "type": "object",
            "properties": {
                "active_rules": {"type": "integer"},
                "at": {"type": "string"},
                "problems": {"type": "array", "items": {"type": "string"}},
                "rules": {"type": "integer"},
                "trigger": {"type": "string"}
            }
        },
        "rules.StepTemplate": {
            "type": "object",
            "properties": {
                "delay_ms": {"type": "integer"},
                "enabled": {"type": "boolean"},
                "modifiers": {"type": "integer"},
                "template": {"type": "string"},
                "type": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8090",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "logtrigger admin API",
	Description:      "Health, pipeline counters and runtime rule edits for logtrigger",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
