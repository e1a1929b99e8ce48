// Package models contains the GORM persistence models of the lease payment
// tables. Domain types carry no ORM tags; each model converts to and from
// its domain type with ToDomain and FromDomain.
package models
