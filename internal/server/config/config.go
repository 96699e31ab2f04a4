// Package config handles configuration for the server component, including
// defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the accountkeeper server.
//
// Fields:
//   - EndpointAddr: bind address for the public HTTP endpoint.
//   - Region: AWS region for the DynamoDB tables.
//   - DBEndpoint: optional DynamoDB endpoint override for a local instance.
//   - AccessKeyID / SecretAccessKey: static credentials, only needed against
//     a local instance; leave empty to use the default AWS credential chain.
type Config struct {
	EndpointAddr    string
	Region          string
	DBEndpoint      string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadDefaults populates Config with development defaults. NOTE: these are
// for local runs and should be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.Region = "us-west-2"
	c.DBEndpoint = ""
	c.AccessKeyID = ""
	c.SecretAccessKey = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
