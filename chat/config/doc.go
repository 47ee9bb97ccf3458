// Package config provides endpoint configuration for the roomchat client.
//
// The config package handles:
//   - Resolving the REST API and socket endpoints from the environment
//   - Eager validation with dedicated errors for missing endpoints
//   - Defaults for HTTP timeout and heartbeat interval
//
// Configuration is resolved once at startup and handed to the REST client and
// the socket transport as an explicit value. Components validate it before
// their first network call, so a missing endpoint surfaces as a configuration
// error instead of a request against an empty URL.
//
// Usage:
//
//	cfg := config.FromEnv().WithDefaults()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal().Err(err).Msg("chat configuration")
//	}
package config
