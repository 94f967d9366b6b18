package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
)

// Loadenv loads .env before the fx app (and its logger) exist, so the config
// providers see a fully populated environment. A missing file is the normal
// case in deployed environments.
func Loadenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("noticehub: no .env file found, using process environment")
	}
}
