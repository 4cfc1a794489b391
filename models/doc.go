/*
Package models defines the domain types shared by the voting services, the
store adapters and the HTTP layer.

A Poll is the MVP vote attached to one match. Its option set is fixed when it
is created and only ever gains votes. Polls move through three states:

	upcoming → active → closed

Closed is terminal and carries frozen Results. A VoteRecord is the immutable
proof that a user voted in a match; at most one exists per (user, match).
*/
package models
