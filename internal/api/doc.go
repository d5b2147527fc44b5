// Package api hosts the HTTP trigger surface. Notable routes:
//   - GET /healthz and /readyz for health checks; readyz pings the record store.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scraper/{init,batch,extract,publish,review} to drive the pipeline.
//   - POST /v1/bulk-import for operator CSV or JSON uploads.
//   - GET /v1/entries for the published knowledge base.
//
// Everything under /v1 requires an x-api-key accepted by auth.Gate.
package api
