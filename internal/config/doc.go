// Package config provides centralized configuration management for the FIRDS
// extraction job.
//
// # Configuration Sources
//
// Configuration is layered, each source overriding the previous one field by
// field:
//
//	1. Default values (Default)
//	2. YAML file (--config flag or FIRDS_CONFIG_FILE)
//	3. Environment variables (highest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern FIRDS_<SECTION>_<FIELD>:
//
//	FIRDS_FEED_URL=https://registers.esma.europa.eu/solr/...
//	FIRDS_FEED_PREFIX=DLTINS
//	FIRDS_HTTP_RETRY_MAX=2
//	FIRDS_OUTPUT_FORMAT=csv
//	FIRDS_STORAGE_BACKEND=s3
//	FIRDS_STORAGE_BUCKET=firds-exports
//	FIRDS_STORAGE_ACCESS_KEY_ID=...
//	FIRDS_LOGGING_LEVEL=debug
//
// # Validation
//
// Constraints are declared as validator struct tags and checked by Load, so
// an invalid combination (for example the minio backend without an endpoint)
// fails before any network access.
//
// # Path Management
//
// Paths resolves the data, downloads, reports and logs directories. Relative
// data directories are anchored at the executable's directory:
//
//	paths, err := config.GetPaths(cfg.Paths.DataDir)
//	if err != nil {
//	    return err
//	}
//	xmlDir := paths.DownloadsDir
package config
