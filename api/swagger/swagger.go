package swagger

import "github.com/swaggo/swag"

// Health, readiness and metrics are served at the root, outside basePath.
const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Coaching Core API",
        "description": "Slot ledger, enrollment workflow and coach payouts.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization"
        }
    },
    "tags": [
        {
            "name": "Coaches",
            "description": "Read-only coach directory"
        },
        {
            "name": "Slots",
            "description": "Slot ledger"
        },
        {
            "name": "Enrollment Workflow",
            "description": "Course to enrollment workflow"
        },
        {
            "name": "Payments",
            "description": "Gateway callbacks"
        },
        {
            "name": "Payouts",
            "description": "Coach payouts"
        },
        {
            "name": "Admin",
            "description": "Operator corrections"
        }
    ],
    "paths": {
        "/coaches": {
            "get": {
                "tags": [
                    "Coaches"
                ],
                "summary": "List active coaches",
                "parameters": [
                    {
                        "name": "specialty",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated specialty tags"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coaches/{coachId}": {
            "get": {
                "tags": [
                    "Coaches"
                ],
                "summary": "Get a coach",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coaches/{coachId}/slots": {
            "get": {
                "tags": [
                    "Slots"
                ],
                "summary": "List a coach's bookable slots",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    },
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer",
                        "description": "Look-ahead window in days"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/coaches/{coachId}/payouts": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "List a coach's own payouts",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/slots/{id}": {
            "get": {
                "tags": [
                    "Slots"
                ],
                "summary": "Get a time slot",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow": {
            "post": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Start an enrollment workflow for a course",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SelectCourseRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Course not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "get": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Get the caller's workflow session",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "No session",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "410": {
                        "description": "Payment session expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Discard the workflow session",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/course": {
            "put": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Replace the selected course",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SelectCourseRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/coaches": {
            "get": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "List coaches matching the selected course",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/coach": {
            "put": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Select a coach",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SelectCoachRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "No matching coach",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/slots": {
            "get": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "List bookable slots of the selected coach",
                "parameters": [
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/slot": {
            "put": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Select a time slot",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SelectSlotRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Slot full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/next": {
            "post": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Advance to the next stage",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Incomplete workflow",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/previous": {
            "post": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Go back one stage",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/checkout": {
            "post": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Complete the payment stage",
                "responses": {
                    "201": {
                        "description": "Enrolled",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "202": {
                        "description": "Awaiting payment",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Slot full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Incomplete workflow",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "502": {
                        "description": "Payment gateway error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/enrollment-workflow/submit": {
            "post": {
                "tags": [
                    "Enrollment Workflow"
                ],
                "summary": "Submit the enrollment",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Slot full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Incomplete workflow",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/webhook": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Receive a payment gateway callback",
                "parameters": [
                    {
                        "name": "X-Gateway-Signature",
                        "in": "header",
                        "required": true,
                        "type": "string",
                        "description": "t=<unix>,v1=<hex hmac>"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PaymentCallback"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Bad signature",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "410": {
                        "description": "Payment session expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/admin/payouts": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "List payouts",
                "parameters": [
                    {
                        "name": "coach_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Generate a payout for a coach and period",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GeneratePayoutRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Already billed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Settings missing",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No billable activity",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/payouts/{id}": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Get a payout",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/payouts/{id}/line-items": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "List a payout's line items",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/payouts/{id}/status": {
            "patch": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Move a payout to a new status",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdatePayoutStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/coaches/{coachId}/payouts/preview": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Preview a coach payout for a period",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    },
                    {
                        "name": "period_start",
                        "in": "query",
                        "type": "string",
                        "description": "YYYY-MM-DD",
                        "required": true
                    },
                    {
                        "name": "period_end",
                        "in": "query",
                        "type": "string",
                        "description": "YYYY-MM-DD, inclusive",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/coaches/{coachId}/payout-settings": {
            "get": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Get a coach's payout settings",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Payouts"
                ],
                "summary": "Create or replace a coach's payout settings",
                "parameters": [
                    {
                        "name": "coachId",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpsertPayoutSettingsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/coaches/cache": {
            "delete": {
                "tags": [
                    "Admin"
                ],
                "summary": "Drop cached coach listings",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/slots/{id}/reserve": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Take one unit of slot capacity",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "409": {
                        "description": "Slot full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/slots/{id}/release": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Give back one unit of slot capacity",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": ""
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "SelectCourseRequest": {
            "type": "object",
            "properties": {
                "course_id": {
                    "type": "string"
                }
            },
            "required": [
                "course_id"
            ]
        },
        "SelectCoachRequest": {
            "type": "object",
            "properties": {
                "coach_id": {
                    "type": "string"
                }
            },
            "required": [
                "coach_id"
            ]
        },
        "SelectSlotRequest": {
            "type": "object",
            "properties": {
                "slot_id": {
                    "type": "string"
                }
            },
            "required": [
                "slot_id"
            ]
        },
        "PaymentCallback": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": [
                        "payment.succeeded",
                        "payment.failed",
                        "payment.cancelled"
                    ]
                },
                "order_ref": {
                    "type": "string"
                },
                "gateway_order_id": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "type",
                "order_ref"
            ]
        },
        "GeneratePayoutRequest": {
            "type": "object",
            "properties": {
                "coach_id": {
                    "type": "string"
                },
                "period_start": {
                    "type": "string",
                    "format": "date"
                },
                "period_end": {
                    "type": "string",
                    "format": "date"
                },
                "tax_amount": {
                    "type": "integer"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "coach_id",
                "period_start",
                "period_end"
            ]
        },
        "UpdatePayoutStatusRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "pending",
                        "processing",
                        "paid",
                        "failed",
                        "cancelled"
                    ]
                },
                "payment_reference": {
                    "type": "string"
                }
            },
            "required": [
                "status"
            ]
        },
        "UpsertPayoutSettingsRequest": {
            "type": "object",
            "properties": {
                "payment_rate_per_student": {
                    "type": "integer"
                },
                "currency": {
                    "type": "string"
                },
                "bank_details": {
                    "description": "Object or free-form string"
                },
                "tax_details": {
                    "description": "Object or free-form string"
                },
                "is_active": {
                    "type": "boolean"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "retryable": {
                    "type": "boolean"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
