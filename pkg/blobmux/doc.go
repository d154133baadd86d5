/*

Package blobmux defines the datatypes and interface boundaries of the
blobmux provider: operation kinds, invocations, the transport contract, the
backend storage facade and the error taxonomy. The provider core that binds
them together lives in pkg/provider; the S3 facade lives in pkg/s3store.

Limitations and Design Considerations

Streaming uploads - write-container-data buffers the whole inbound stream
in memory before issuing a single backend write. Multipart or incremental
uploads would lift the memory ceiling for large objects, but they
complicate the exactly-one-outcome contract, so they are deferred until a
transport with real flow control demands them.

Shutdown drain - the dispatcher stops accepting invocations the moment the
shutdown signal resolves and does not await in-flight handlers. This favors
shutdown latency over completeness. A tracked task set joined with a
timeout would give the stronger guarantee if it is ever needed.

Channel recovery - when any one operation channel terminates, the
dispatcher re-establishes all of them rather than just the dead one. This
sacrifices fine-grained resubscription for having exactly one recovery
path, and transports are expected to hold undelivered invocations across
the refresh.

Retries - backend failures are classified (not-found, transient,
unexpected) but never retried at this layer. Retry policy belongs to the
backend client configuration or to the caller, who knows whether the
operation is idempotent in its application.

Access control - callers are isolated per link, each link carrying its own
backend credentials, but there is no finer-grained authorization. A caller
may reach any bucket its link credentials can reach.

*/
package blobmux
