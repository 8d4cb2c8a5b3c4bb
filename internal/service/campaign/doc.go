// Package campaign implements campaign lifecycle management.
//
// The dispatcher owns the creation protocol: persist the campaign, resolve
// its audience, fan out one PENDING communication log per recipient, then
// hand each recipient to the vendor without awaiting the outcome. Status
// moves strictly forward through draft, running, completed.
//
// Repository implementations live in repository/postgres/.
package campaign
