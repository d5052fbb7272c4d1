// Package http implements the HTTP handlers of the outage report service.
// Handlers are thin: they parse and validate parameters, call the outage
// service and render the result.
//
// # Routes
//
// OutageHandler.Routes is mounted under /api/v1:
//
//	GET  /periods                          loaded periods, totals and failures
//	GET  /periods/{period}/daily           per-day counts (?format=csv)
//	GET  /periods/{period}/totals          record totals
//	GET  /periods/{period}/meters          distinct meter ids
//	GET  /periods/{period}/records         ?meter=&date=YYYY-MM-DD (?format=csv)
//	GET  /periods/{period}/matrix          meter by day matrix (?year=&month=)
//	GET  /periods/{period}/matrix.xlsx     the same matrix as a workbook
//	GET  /cache                            cache statistics
//	POST /cache/invalidate                 drop cached datasets
//
// # Errors
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "period \"March\" not loaded",
//	    "instance": "/api/v1/periods/March/daily"
//	}
//
// A workbook where no period loads answers 503 with code NO_PERIODS_LOADED.
package http
