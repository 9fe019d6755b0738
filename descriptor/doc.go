// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package descriptor parses Corral launch descriptors: declarative XML
// files that name the external node processes a demo rig should run,
// with what arguments, in which environment, on which machine.
//
// Parsing is pure — no process is started and no socket is opened.
// The result of [ParseFile] is a fully resolved [Descriptor]: argument
// substitution applied, includes flattened, conditions evaluated, and
// the whole structure validated. The supervisor layer consumes the
// resolved descriptor; it never sees raw XML.
//
// Descriptor syntax:
//
//	<launch>
//	  <arg name="machine" default="localhost"/>
//	  <arg name="user" default=""/>
//	  <machine name="rig" address="$(arg machine)" user="$(arg user)"
//	           env-loader="$(optenv ROS_ENV_LOADER)"/>
//	  <node name="tracker" pkg="perception" exec="tracker_service"
//	        machine="rig" args="--depth-registration" respawn="true"/>
//	  <include file="$(dirname)/cameras.launch">
//	    <arg name="marker_size" value="5.0"/>
//	  </include>
//	</launch>
//
// Substitution verbs, usable in any attribute value:
//
//	$(arg name)            value of a declared argument
//	$(env NAME)            required environment variable
//	$(optenv NAME default) optional environment variable
//	$(dirname)             directory of the current descriptor file
//
// Nodes and includes accept if="..." and unless="..." attributes whose
// values must resolve to a boolean. A node disabled by its condition
// is kept in the descriptor (so an operator can start it later); an
// include disabled by its condition is skipped entirely.
package descriptor
