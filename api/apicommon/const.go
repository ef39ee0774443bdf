// Package apicommon provides common types, constants, and helper functions for the API.
package apicommon

// MetadataKey is a type to define the key for the metadata stored in the
// context.
type MetadataKey string

// UserMetadataKey is the key used to store the user in the context.
const UserMetadataKey MetadataKey = "user"

// MaxWebhookBodyBytes bounds the size of a webhook payload read by the API.
const MaxWebhookBodyBytes = int64(65536)
