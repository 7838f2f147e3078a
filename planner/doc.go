// Package planner defines the collaborator contract between the streaming
// transport and the planning computation that feeds it. The transport treats
// the planner as opaque: it hands over the accumulated dialogue context, gets
// back a stream of named domain events through a sink, and finally a terminal
// result (or a classified fault).
//
// Layers & Roles
//
//	streamhttp -> owns the HTTP response and the frame queue
//	Planner    -> produces domain events and a terminal Result
//	EventSink  -> the only channel from the planner back into the stream
//
// Implementations live outside this module; plannertest provides a scripted
// planner for exercising the transport.
package planner
