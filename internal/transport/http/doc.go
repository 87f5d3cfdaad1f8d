// Package http implements the REST handlers of the FLIPR analysis server.
// Handlers are a thin layer over the analysis service: they decode and
// validate requests, call the service and render the result.
//
// # Routes
//
// All analysis routes live under /api/v1:
//
//	POST /data                     upload an instrument export
//	GET  /status                   session state
//	GET  /layout, PUT /layout      plate layout
//	POST /layout/labels            label, log10 series or clear wells
//	POST /layout/import            CSV/XLSX metadata sheet
//	GET  /layout/fmg               instrument plate file
//	POST /layout/save|load         layouts directory
//	GET  /layout/saved             saved layouts, DELETE /layout/saved/{name}
//	GET  /parameters, PUT          analysis parameters
//	POST /process                  run the pipeline
//	GET  /wells, /groups, /normalized
//	GET  /wells/{wellID}/trace
//	GET  /diagnosis, POST          diagnosis results
//	GET  /diagnosis/config, PUT    diagnosis configuration (?save=true)
//	GET  /export/xlsx, /export/csv
//	GET  /export/reports           saved reports, POST saves one
//	GET  /export/reports/{name}    download, DELETE removes
//
// Successful responses use the api.Response envelope. Errors are RFC 7807
// problem documents written by the shared ErrorHandler.
package http
