/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := Execute(); err != nil {
		log.Error().Err(err).Msg("strapi-media-dump failed")
		os.Exit(1)
	}
}
