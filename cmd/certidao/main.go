package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "certidao",
	Short: "Bulk issuance of federal tax-compliance certificates",
	Long: `certidao issues tax-compliance certificates (certidões) for a list of CNPJs by
driving a browser through the issuance form, and reports how many were issued.

Features:
  - Reads CNPJs and company names from .xlsx, .csv or .txt files
  - One CNPJ at a time; a failing CNPJ never stops the batch
  - Captcha solving through an API key
  - Certificates saved as PDF, named after the company
  - Reports in xlsx, json or csv
  - Resumable runs and optional upload to S3

Examples:
  certidao emit -i empresas.xlsx -o ./saida
  certidao emit -i cnpjs.txt -o ./saida --resume --format json
  certidao info empresas.xlsx
  certidao config
  certidao version`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("certidao v%s\n", version)
		fmt.Println("Use 'certidao --help' for available commands")
		fmt.Println("Use 'certidao emit --help' for issuance options")
	},
}

func init() {
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
