// Package media generates resized JPEG derivatives for cataloged photos
// and lays them out in a GUID-bucketed directory tree.
package media
