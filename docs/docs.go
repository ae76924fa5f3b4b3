// Package docs registers the OpenAPI description served under /swagger.
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
        "/api/food-recommendation": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["recommendation"],
                "summary": "Ask the menu assistant",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/recommendationRequest"}}],
                "responses": {"200": {"description": "OK"}, "500": {"description": "Fallback text"}}
            }
        },
        "/api/order": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Place an order",
                "parameters": [{"in": "body", "name": "order", "required": true, "schema": {"$ref": "#/definitions/createOrderRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/orders/{userId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List a user's orders, newest first",
                "parameters": [{"type": "string", "in": "path", "name": "userId", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/orders/current/{userId}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Current order (created within the last 3 hours)",
                "parameters": [{"type": "string", "in": "path", "name": "userId", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/order/{orderId}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Delete an order permanently",
                "parameters": [{"type": "string", "in": "path", "name": "orderId", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/order/{orderId}/deliver": {
            "patch": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Mark an order delivered",
                "parameters": [{"type": "string", "in": "path", "name": "orderId", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/me/order": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "State of the caller's current order",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Place an order for the caller",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/sessionOrderRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Order in progress"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Replace the items of the caller's order in progress",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/sessionOrderRequest"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "No order in progress"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Cancel the caller's order in progress",
                "parameters": [{"type": "boolean", "in": "query", "name": "confirm", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Not confirmed"}}
            }
        },
        "/api/me/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "The caller's order history",
                "parameters": [
                    {"type": "string", "in": "query", "name": "period", "enum": ["all", "today", "7days", "month"]},
                    {"type": "string", "in": "query", "name": "search"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/auth/signup": {"post": {"tags": ["auth"], "summary": "Start signup; mails an OTP", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/signupRequest"}}], "responses": {"200": {"description": "OK"}}}},
        "/api/auth/verify-otp": {"post": {"tags": ["auth"], "summary": "Verify signup OTP and set password", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/verifyOTPRequest"}}], "responses": {"200": {"description": "OK"}}}},
        "/api/auth/login": {"post": {"tags": ["auth"], "summary": "Log in and receive a JWT", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/loginRequest"}}], "responses": {"200": {"description": "OK"}}}},
        "/api/auth/forgot-password": {"post": {"tags": ["auth"], "summary": "Mail a password reset OTP", "responses": {"200": {"description": "OK"}}}},
        "/api/auth/verify-reset-otp": {"post": {"tags": ["auth"], "summary": "Check a password reset OTP", "responses": {"200": {"description": "OK"}}}},
        "/api/auth/reset-password": {"post": {"tags": ["auth"], "summary": "Reset the password with an OTP", "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/resetPasswordRequest"}}], "responses": {"200": {"description": "OK"}}}},
        "/api/auth/validate": {"get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Resolve a bearer token to its user", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}}
    },
    "definitions": {
        "orderItem": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "price": {"type": "number"}, "quantity": {"type": "integer"}}
        },
        "createOrderRequest": {
            "type": "object",
            "properties": {"userId": {"type": "string"}, "items": {"type": "array", "items": {"$ref": "#/definitions/orderItem"}}, "total": {"type": "number"}}
        },
        "sessionOrderRequest": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/orderItem"}}}
        },
        "recommendationRequest": {
            "type": "object",
            "properties": {"text": {"type": "string"}, "history": {"type": "array", "items": {"type": "object"}}}
        },
        "signupRequest": {"type": "object", "properties": {"name": {"type": "string"}, "email": {"type": "string"}}},
        "verifyOTPRequest": {"type": "object", "properties": {"email": {"type": "string"}, "otp": {"type": "string"}, "password": {"type": "string"}}},
        "loginRequest": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "resetPasswordRequest": {"type": "object", "properties": {"email": {"type": "string"}, "otp": {"type": "string"}, "newPassword": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "KhanPan API",
	Description:      "Restaurant ordering chatbot backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
