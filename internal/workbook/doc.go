// Package workbook is the spreadsheet boundary of the outage counter. It
// reads period sheets into dataprocessing.Table values and writes outage
// matrices and daily counts to xlsx using excelize. Nothing in here
// aggregates; that lives in dataprocessing.
package workbook
