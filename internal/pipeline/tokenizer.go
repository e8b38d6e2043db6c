package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// blockStride is the number of lines a statement block occupies: the
// date/amount line, the reference line and one trailing line. Blocks of any
// other length desynchronise the scan.
const blockStride = 3

const statementDateLayout = "02Jan,2006"

var (
	statementDateRe = regexp.MustCompile(`(\d{2}\w{3},\d{4})`)
	// "₹" or its Latin-1 mojibake "â‚¹", then digits with thousands commas.
	statementAmountRe = regexp.MustCompile(`(?:₹|â‚¹)\s?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	statementRefRe    = regexp.MustCompile(`UPITransactionID[: ]?(\d+)`)
)

// TokenizeStatement scans extracted statement text for transaction blocks.
// A block opens on a line holding a date token and a currency amount; the UPI
// reference is read from the following line.
func TokenizeStatement(text string) []RawRecord {
	lines := statementLines(text)

	var records []RawRecord
	i := 0
	for i < len(lines) {
		line := lines[i]

		dateLoc := statementDateRe.FindStringSubmatchIndex(line)
		if dateLoc == nil {
			i++
			continue
		}
		dateToken := line[dateLoc[2]:dateLoc[3]]
		date, err := time.Parse(statementDateLayout, dateToken)
		if err != nil {
			i++
			continue
		}

		amountLoc := statementAmountRe.FindStringSubmatchIndex(line)
		if amountLoc == nil {
			i++
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(line[amountLoc[2]:amountLoc[3]], ",", ""), 64)
		if err != nil {
			i++
			continue
		}

		ref := ""
		if i+1 < len(lines) {
			if m := statementRefRe.FindStringSubmatch(lines[i+1]); m != nil {
				ref = m[1]
			}
		}

		records = append(records, RawRecord{
			"id":       ref,
			"date":     formatISO(date, false),
			"amount":   amount,
			"merchant": statementMerchant(line, dateLoc[0], dateLoc[1], amountLoc[0], amountLoc[1]),
		})
		i += blockStride
	}
	return records
}

func statementLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, ln := range raw {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// statementMerchant is the line without its date and amount tokens.
func statementMerchant(line string, dateStart, dateEnd, amountStart, amountEnd int) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if (i >= dateStart && i < dateEnd) || (i >= amountStart && i < amountEnd) {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(line[i])
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
