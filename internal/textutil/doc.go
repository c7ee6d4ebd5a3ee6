// Package textutil sanitizes session labels for use as image file names.
package textutil
