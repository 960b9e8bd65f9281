package core

import "net/url"

// User-facing status messages shown under the entry form.
const (
	MsgSelectionRequired = "スプレッドシートとシートを選択してください"
	MsgSubmitSucceeded   = "送信成功！"
	MsgSubmitFailed      = "送信失敗"
)

// SpreadsheetURL links to the spreadsheet in the Google Sheets web editor.
func SpreadsheetURL(documentID string) string {
	return "https://docs.google.com/spreadsheets/d/" + url.PathEscape(documentID)
}
