package main

// General API documentation for swaggo. Run `swag init -g cmd/llmd/docs.go -o docs` to generate docs.
//
// @title           llmd API
// @version         1.0
// @description     HTTP API for model lifecycle, dispatch, and retraining.
//
// @contact.name   llmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
