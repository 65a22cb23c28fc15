// Package domain holds the model types, sentinel errors, and interfaces shared
// across the boost lifecycle layers. It has no dependencies on any adapter.
package domain
