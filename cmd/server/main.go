package main

import (
	"os"

	"github.com/IMax153/netlify-ai-gateway/internal/app"
)

// @title           Dad Joke Chat API
// @version         1.0
// @description     Streams dad-joke chat replies as UI message chunks over server-sent events.
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
