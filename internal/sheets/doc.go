// Package sheets reads table versions from Google Sheets tabs.
//
// Values are requested with FORMATTED_VALUE rendering so every cell arrives
// as the string a user sees in the sheet, the same representation the
// workbook and CSV parsers produce.
package sheets
