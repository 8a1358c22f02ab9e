// Package auth drives the SMP authentication of room members.
//
// A Workflow walks one peer through Initiate, Response and Authenticate and
// ends in exactly one terminal outcome. Successful comparisons mark the
// peer's fingerprint verified in the trust store; mismatches mark it
// unverified. The Manager keeps at most one pending workflow per room and
// peer and turns incoming secret requests into responder workflows.
package auth
