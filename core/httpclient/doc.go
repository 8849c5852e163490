// Package httpclient builds the net/http transport shared by the SDK clients
// (godo for DigitalOcean, minio-go for object storage) and the timeout
// conversion used by every outbound client.
package httpclient
