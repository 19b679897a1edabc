/*
Package ldap provides the directory session used by the entry reconciler.

The session wraps a single go-ldap connection that is established lazily on
first use and reused for the rest of the process. It exposes exactly the
three primitives the reconciler needs:

  - Exists: base-scope lookup at an exact DN
  - ValueIsPresent: server-side value comparison with a tri-state outcome
  - Apply: translation of a Mutation into the corresponding wire call

Connection establishment dials the configured endpoint (the local ldapi
socket by default), optionally upgrades the connection with StartTLS, and
then binds using one of three strategies: simple bind (including anonymous),
SASL EXTERNAL using the transport identity, or GSSAPI/Kerberos via gokrb5.
Any failure during establishment is fatal; the session never reconnects and
never retries.

The two directory conditions the reconciler depends on — noSuchObject during
an existence check and noSuchAttribute during a comparison — are returned as
ordinary states, not errors. Everything else surfaces as a categorized
*DirectoryError.
*/
package ldap
