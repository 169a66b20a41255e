// Package recorder persists the event bus to the session store.
//
// The Recorder subscribes to every topic and writes one ledger row per event,
// in the order the bus delivered them. ArtifactProduced events are also
// written as artifact records so the get_artifact tool can return full text
// after only a summary was sent to the model. Write failures are logged and
// never stop the session.
package recorder
