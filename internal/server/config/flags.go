package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   AWS region for the DynamoDB tables
//	-e string   DynamoDB endpoint override (e.g., "http://localhost:8000")
//	-k string   AWS access key id (local instance only)
//	-s string   AWS secret access key (local instance only)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-e", "-k", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.Region, "g", config.Region, "AWS region")
	fs.StringVar(&config.DBEndpoint, "e", config.DBEndpoint, "DynamoDB endpoint override")
	fs.StringVar(&config.AccessKeyID, "k", config.AccessKeyID, "AWS access key id")
	fs.StringVar(&config.SecretAccessKey, "s", config.SecretAccessKey, "AWS secret access key")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
