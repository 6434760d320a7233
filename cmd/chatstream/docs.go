package main

// General API documentation for swaggo. Generate the docs package, then build
// with -tags=swagger to serve it under /swagger/:
//
//	swag init -d ./cmd/chatstream,./internal/httpapi,./pkg/types -g docs.go -o ./docs
//
// @title           chatstream API
// @version         1.0
// @description     Streams chat replies from a locally loaded model as server-sent events.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
