package main

// General API documentation for swaggo. Run `swag init -g cmd/workerd/docs.go -o docs` to regenerate.
//
// @title           workerd API
// @version         1.0
// @description     Supervises LLM and tokenizer worker processes and answers prompts over HTTP.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
