package notionsync

import (
	"time"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database.
const (
	PropMerchant    = "Merchant"
	PropFingerprint = "Fingerprint"
	PropReference   = "Reference"
	PropDate        = "Date"
	PropAmount      = "Amount"
	PropCategory    = "Category"
	PropPaid        = "Paid"
	PropHousehold   = "Household"
)

// TransactionToNotionProperties maps a ledger row onto the database schema:
// Merchant (title), Fingerprint, Reference, Household (rich text), Date,
// Amount (number), Category (select) and Paid (checkbox).
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	title := tx.Merchant
	if title == "" {
		title = "(no merchant)"
	}

	date := notionapi.Date(time.Date(tx.Date.Year(), tx.Date.Month(), tx.Date.Day(), 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		PropMerchant: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropFingerprint: notionapi.RichTextProperty{
			RichText: richText(tx.Fingerprint),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.Amount,
		},
		PropPaid: notionapi.CheckboxProperty{
			Checkbox: tx.Paid,
		},
	}

	if tx.ExternalID != "" {
		props[PropReference] = notionapi.RichTextProperty{RichText: richText(tx.ExternalID)}
	}
	if tx.HouseholdID != "" {
		props[PropHousehold] = notionapi.RichTextProperty{RichText: richText(tx.HouseholdID)}
	}
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// extractFingerprint returns the page's Fingerprint text, or "".
func extractFingerprint(page notionapi.Page) string {
	if prop, ok := page.Properties[PropFingerprint]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
