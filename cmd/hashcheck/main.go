// Package main provides a CLI tool for computing and checking certificate
// verification digests offline. Anyone holding a certificate can recompute
// the digest from its face values without talking to the service or the
// ledger.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"skillchain/internal/certificate/hash"
)

type computeOutput struct {
	IdentityID     string `json:"identity_id"`
	CourseID       string `json:"course_id"`
	CompletionDate string `json:"completion_date"`
	Hash           string `json:"verification_hash"`
}

func main() {
	computeCmd := flag.NewFlagSet("compute", flag.ExitOnError)
	computeIdentity := computeCmd.String("identity", "", "Identity ID printed on the certificate")
	computeCourse := computeCmd.String("course", "", "Course ID printed on the certificate")
	computeDate := computeCmd.String("date", "", "Completion date (YYYY-MM-DD). Defaults to today (UTC).")
	computeJSON := computeCmd.Bool("json", false, "Output as JSON")

	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	verifyIdentity := verifyCmd.String("identity", "", "Identity ID printed on the certificate")
	verifyCourse := verifyCmd.String("course", "", "Course ID printed on the certificate")
	verifyDate := verifyCmd.String("date", "", "Completion date (YYYY-MM-DD)")
	verifyHash := verifyCmd.String("hash", "", "Verification hash to check against")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compute":
		computeCmd.Parse(os.Args[2:])
		runCompute(*computeIdentity, *computeCourse, *computeDate, *computeJSON)
	case "verify":
		verifyCmd.Parse(os.Args[2:])
		runVerify(*verifyIdentity, *verifyCourse, *verifyDate, *verifyHash)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runCompute(identityID, courseID, date string, asJSON bool) {
	date = resolveDate(date)
	digest, err := hash.Compute(identityID, courseID, date)
	if err != nil {
		fatalf("compute failed: %v (identity and course are required)", err)
	}

	if asJSON {
		out := computeOutput{
			IdentityID:     identityID,
			CourseID:       courseID,
			CompletionDate: date,
			Hash:           digest,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}
	fmt.Println(digest)
}

func runVerify(identityID, courseID, date, claimed string) {
	if claimed == "" {
		fatalf("verify requires -hash")
	}
	date = resolveDate(date)
	digest, err := hash.Compute(identityID, courseID, date)
	if err != nil {
		fatalf("compute failed: %v (identity and course are required)", err)
	}

	if strings.EqualFold(digest, claimed) {
		fmt.Println("MATCH")
		return
	}
	fmt.Println("MISMATCH")
	fmt.Printf("  expected: %s\n", digest)
	fmt.Printf("  claimed:  %s\n", strings.ToUpper(claimed))
	os.Exit(1)
}

func resolveDate(date string) string {
	if date == "" {
		return hash.FormatDate(time.Now())
	}
	if _, err := time.Parse(hash.DateLayout, date); err != nil {
		fatalf("invalid date %q: want YYYY-MM-DD", date)
	}
	return date
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`hashcheck - recompute certificate verification digests offline

Usage:
  hashcheck compute -identity <id> -course <id> [-date YYYY-MM-DD] [-json]
  hashcheck verify  -identity <id> -course <id> -date YYYY-MM-DD -hash <hex>

Examples:
  hashcheck compute -identity learner-1 -course course-go-fundamentals -date 2025-01-10
  hashcheck verify -identity learner-1 -course course-go-fundamentals -date 2025-01-10 -hash 76E1...`)
}
