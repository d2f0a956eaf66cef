// Command rhom manages typed records in a local SQLite store.
//
// Types are declared in a config file (YAML, JSON or TOML):
//
//	settings:
//	  data_dir: ./data
//	types:
//	  User:
//	    properties: [email, name]
//	    cache_ttl: 1m
//	    indexes: [email]
//	    schema:
//	      type: object
//	      required: [email]
//
// and then used from the command line:
//
//	rhom --config rhom.yaml set User email=ada@example.com name=Ada
//	rhom --config rhom.yaml find User email ada@example.com
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
