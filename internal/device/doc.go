// Package device defines the platform contracts the scanner consumes
// (Radio, Scanner, Advertisement), the discovered-device Record with its
// display ordering, and the availability error taxonomy.
package device
