// Package config loads, normalizes, and validates keroro configuration data.
//
// It supplies repository defaults, reads TOML files from
// ~/.config/keroro/config.toml or ./keroro.toml, and honours environment
// fallbacks such as KERORO_BASE_URL and KERORO_LOG_LEVEL. The Config type
// gathers the backend transport policy, polling cadence, model cache sizing
// and the provider credentials that `keroro config push` sends upstream.
//
// Always obtain settings through this package so downstream code receives
// canonical log formats and clear validation errors.
package config
