// Package config defines configuration structures for the trawl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (TRAWL_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    Project         string
//	    Bucket          string
//	    Prefix          string
//	    Dest            string
//	    Parallelism     int
//	    Workers         int
//	    MaxComposeBytes int64
//	    Strategy        string
//	    Classes         []string
//	    Progress        bool
//	    LogLevel        string
//	}
package config
