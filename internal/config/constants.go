package config

// Application constants
const (
	AppName = "firds"

	// EnvPrefix namespaces every environment variable, e.g. FIRDS_FEED_URL
	EnvPrefix = "FIRDS"

	// ConfigFileEnv names the YAML config file when --config is not given
	ConfigFileEnv = "FIRDS_CONFIG_FILE"

	// DefaultFeedURL is the ESMA FIRDS file register query for the delta
	// files published between 17 and 19 January 2021
	DefaultFeedURL = "https://registers.esma.europa.eu/solr/esma_registers_firds_files/select?q=*&fq=publication_date:%5B2021-01-17T00:00:00Z+TO+2021-01-19T23:59:59Z%5D&wt=xml&indent=true&start=0&rows=100"

	// DefaultFilePrefix selects delta instrument files
	DefaultFilePrefix = "DLTINS"

	DefaultUserAgent = "firds-extractor/1.0"

	// Directory layout below the data directory
	DownloadsDirName = "downloads"
	ReportsDirName   = "reports"
	LogsDirName      = "logs"
	DefaultLogFile   = "firds.log"
)
