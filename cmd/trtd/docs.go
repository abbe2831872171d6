package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           trtd API
// @version         1.0
// @description     HTTP API for streaming text generation against a batched GPU executor.
//
// @contact.name   trtd maintainers
// @contact.url    https://github.com/your-org/trtd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
