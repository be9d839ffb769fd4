// Package connectors holds the document sources that feed the corpus.
// Each connector turns changes in an external source into import and
// forget calls on driving.ImportService.
package connectors
