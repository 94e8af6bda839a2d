package schema

// titledPointSchema is the {title, description} pair shared by advocacy and
// skepticism blocks.
func titledPointSchema() *JSONSchema {
	return NewObjectSchema().
		AddProperty("title", NewStringSchema()).
		AddProperty("description", NewStringSchema()).
		AddRequired("title", "description")
}

func concernResponseSchema() *JSONSchema {
	return NewObjectSchema().
		AddProperty("concern", NewStringSchema()).
		AddProperty("response", NewStringSchema()).
		AddRequired("concern", "response")
}

// ideaSchema describes a single batch-generated idea.
func ideaSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("One candidate idea produced by the idea generator").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("text", NewStringSchema()).
		AddRequired("idea_index", "text")
}

// evaluationSchema describes the critic's scored assessment of one idea.
func evaluationSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("A scored critique of one idea").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("score", NewNumberSchema(0, 10)).
		AddProperty("critique", NewStringSchema()).
		AddProperty("strengths", NewArraySchema(NewStringSchema())).
		AddProperty("weaknesses", NewArraySchema(NewStringSchema())).
		AddProperty("suggestions", NewArraySchema(NewStringSchema())).
		AddRequired("idea_index", "score", "critique")
}

// advocacySchema describes the advocate's case for one idea.
func advocacySchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("The case for one idea").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("strengths", NewArraySchema(titledPointSchema())).
		AddProperty("opportunities", NewArraySchema(titledPointSchema())).
		AddProperty("addressing_concerns", NewArraySchema(concernResponseSchema())).
		AddRequired("idea_index", "strengths", "opportunities")
}

// skepticismSchema describes the skeptic's critique of one idea.
func skepticismSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("The critique against one idea").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("flaws", NewArraySchema(titledPointSchema())).
		AddProperty("risks", NewArraySchema(titledPointSchema())).
		AddProperty("questionable_assumptions", NewArraySchema(titledPointSchema())).
		AddProperty("missing_considerations", NewArraySchema(titledPointSchema())).
		AddRequired("idea_index", "flaws", "risks")
}

// improvementSchema describes the improver's revision of one idea.
func improvementSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("A revised idea responding to advocacy and skepticism").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("improved_text", NewStringSchema()).
		AddProperty("rationale", NewStringSchema()).
		AddRequired("idea_index", "improved_text", "rationale")
}

// dimensionScoresSchema describes the multi-dimensional evaluator's 7-axis
// scoring of one idea.
func dimensionScoresSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("7-dimension scoring of one idea, each axis in [0,10]").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("feasibility", NewNumberSchema(0, 10)).
		AddProperty("innovation", NewNumberSchema(0, 10)).
		AddProperty("impact", NewNumberSchema(0, 10)).
		AddProperty("cost_effectiveness", NewNumberSchema(0, 10)).
		AddProperty("scalability", NewNumberSchema(0, 10)).
		AddProperty("risk", NewNumberSchema(0, 10)).
		AddProperty("timeline", NewNumberSchema(0, 10)).
		AddRequired("idea_index", "feasibility", "innovation", "impact",
			"cost_effectiveness", "scalability", "risk", "timeline")
}

// inferenceSchema describes the logical inference engine's structured
// reasoning about one idea.
func inferenceSchema() *JSONSchema {
	return NewObjectSchema().
		WithDescription("Structured logical reasoning about one idea").
		AddProperty("idea_index", NewNumberSchema(0, 1_000_000)).
		AddProperty("inference_chain", NewArraySchema(NewStringSchema())).
		AddProperty("conclusion", NewStringSchema()).
		AddProperty("confidence", NewNumberSchema(0, 1)).
		AddProperty("suggestions", NewArraySchema(NewStringSchema())).
		AddProperty("type", NewEnumSchema("FULL", "CAUSAL", "CONSTRAINTS", "CONTRADICTION", "IMPLICATIONS")).
		AddRequired("idea_index", "conclusion", "confidence", "type")
}
