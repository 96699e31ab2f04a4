package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, non-empty fields are copied into
// the runtime Config.
type JsonConfig struct {
	EndpointAddr    string `json:"endpoint_addr"`
	Region          string `json:"region"`
	DBEndpoint      string `json:"db_endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.Region != "" {
		config.Region = c.Region
	}
	if c.DBEndpoint != "" {
		config.DBEndpoint = c.DBEndpoint
	}
	if c.AccessKeyID != "" {
		config.AccessKeyID = c.AccessKeyID
	}
	if c.SecretAccessKey != "" {
		config.SecretAccessKey = c.SecretAccessKey
	}
}
