package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/jsvensson/dirfmt"
	"github.com/jsvensson/dirfmt/internal/format"
	"github.com/jsvensson/dirfmt/internal/lsp"
)

var version = "dev"

func main() {
	root := pflag.String("root", ".", "root directory holding the policy file")
	policyPath := pflag.String("policy", "", "path to policy HCL file (default <root>/"+dirfmt.PolicyFileName+")")
	verbose := pflag.CountP("verbose", "v", "log more (can be repeated)")
	pflag.Parse()

	p, err := dirfmt.Load(*root, *policyPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	f := format.Command{Name: p.Formatter.Command, Args: p.Formatter.Args}
	s := lsp.NewServer(version, p, f)
	if err := s.Run(1 + *verbose); err != nil {
		os.Exit(1)
	}
}
