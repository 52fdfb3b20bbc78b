// Package services contains the server-side business logic: accounts,
// encrypted report storage, metric extraction and comparison, and the AI
// analysis calls. Every operation that touches user data writes an audit
// entry; transport concerns live in httpapi.
package services
