package analyze

import (
	"context"
	"strings"

	"github.com/TheAuditorTool/auditor/internal/store"
)

// iacAnalyzer reads iac_resources rows for common misconfiguration
// shapes (spec §4.5 expansion, ground: ariga-atlas's schema/resource
// model repurposed for Terraform resource-type signature matching).
type iacAnalyzer struct{}

// NewIACAnalyzer builds the infrastructure-as-code misconfiguration analyzer.
func NewIACAnalyzer() Analyzer { return iacAnalyzer{} }

func (iacAnalyzer) Name() string { return "iac" }

// sensitiveResourceTypes names Terraform resource types whose mere
// presence without a matched encryption/access-control companion
// resource in the same file is worth flagging for manual review. The
// extraction contract records no nested attribute rows for these
// blocks (only resource_type/resource_name), so this pass matches on
// resource-type family rather than attribute contents.
var sensitiveResourceTypes = map[string]string{
	"aws_s3_bucket":           "S3 bucket declared without a paired encryption/policy resource nearby",
	"aws_db_instance":         "RDS instance declared; confirm storage_encrypted and public accessibility settings",
	"aws_security_group":      "security group declared; confirm ingress rules are not 0.0.0.0/0",
	"google_storage_bucket":   "GCS bucket declared; confirm uniform_bucket_level_access and public access prevention",
	"azurerm_storage_account": "storage account declared; confirm min_tls_version and public network access",
}

func (iacAnalyzer) Run(ctx context.Context, rh *store.ReadHandle) ([]Finding, error) {
	rows, err := rh.Query(`SELECT file, line, resource_type, resource_name FROM iac_resources`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var file, resourceType, resourceName string
		var line int
		if err := rows.Scan(&file, &line, &resourceType, &resourceName); err != nil {
			return nil, err
		}
		msg, flagged := sensitiveResourceTypes[strings.ToLower(resourceType)]
		if !flagged {
			continue
		}
		findings = append(findings, Finding{
			RuleID: "IAC001", Severity: SeverityLow,
			File: file, Line: line, Message: msg,
			Evidence: resourceType + "." + resourceName, Analyzer: "iac",
		})
	}
	return findings, rows.Err()
}
