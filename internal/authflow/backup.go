package authflow

import (
	"strings"
	"time"
)

// BackupCodesFilename is the suggested name for the saved backup codes.
const BackupCodesFilename = "twitter-bot-backup-codes.txt"

// BackupCodesText renders the backup codes document.
func BackupCodesText(username string, codes []string, generated time.Time) string {
	var b strings.Builder

	b.WriteString("Twitter Bot - Backup Codes\n\n")
	b.WriteString("Username: " + username + "\n")
	b.WriteString("Generated: " + generated.Format("1/2/2006, 3:04:05 PM") + "\n\n")
	b.WriteString(strings.Join(codes, "\n"))
	b.WriteString("\n\nKeep these codes in a safe place. Each code can only be used once.")

	return b.String()
}
