package domain

// TestFields is the closed set of test_result keys.
var TestFields = []string{
	// vital signs
	"body_temperature",
	"pulse",
	"respiratory_rate",
	"blood_pressure",
	"systolic_blood_pressure",
	"diastolic_blood_pressure",
	"oxygen_saturation",
	"height",
	"weight",
	"bmi",
	"waist_circumference",

	// complete blood count
	"white_blood_cell",
	"red_blood_cell",
	"hemoglobin",
	"hematocrit",
	"mean_corpuscular_volume",
	"mean_corpuscular_hemoglobin",
	"mean_corpuscular_hemoglobin_concentration",
	"red_cell_distribution_width",
	"platelet",
	"mean_platelet_volume",
	"neutrophil",
	"lymphocyte",
	"monocyte",
	"eosinophil",
	"basophil",
	"erythrocyte_sedimentation_rate",

	// metabolic panel
	"fasting_blood_glucose",
	"glucose",
	"hemoglobin_a1c",
	"blood_urea_nitrogen",
	"creatinine",
	"estimated_glomerular_filtration_rate",
	"uric_acid",
	"sodium",
	"potassium",
	"chloride",
	"carbon_dioxide",
	"calcium",
	"phosphorus",
	"magnesium",

	// liver
	"total_protein",
	"albumin",
	"globulin",
	"albumin_globulin_ratio",
	"total_bilirubin",
	"direct_bilirubin",
	"alkaline_phosphatase",
	"aspartate_aminotransferase",
	"alanine_aminotransferase",
	"gamma_glutamyl_transferase",
	"lactate_dehydrogenase",

	// lipids
	"total_cholesterol",
	"hdl_cholesterol",
	"ldl_cholesterol",
	"triglycerides",
	"non_hdl_cholesterol",

	// thyroid
	"thyroid_stimulating_hormone",
	"free_t3",
	"free_t4",
	"total_t3",
	"total_t4",

	// iron and vitamins
	"serum_iron",
	"ferritin",
	"total_iron_binding_capacity",
	"transferrin_saturation",
	"vitamin_b12",
	"folate",
	"vitamin_d",

	// inflammation, cardiac, coagulation
	"c_reactive_protein",
	"high_sensitivity_c_reactive_protein",
	"troponin",
	"creatine_kinase",
	"prothrombin_time",
	"international_normalized_ratio",
	"activated_partial_thromboplastin_time",
	"fibrinogen",

	// tumor markers and hepatitis
	"alpha_fetoprotein",
	"carcinoembryonic_antigen",
	"prostate_specific_antigen",
	"ca_19_9",
	"ca_125",
	"hepatitis_b_surface_antigen",
	"hepatitis_b_surface_antibody",
	"hepatitis_c_antibody",

	// urinalysis
	"urine_ph",
	"urine_specific_gravity",
	"urine_protein",
	"urine_glucose",
	"urine_ketone",
	"urine_blood",
	"urine_bilirubin",
	"urine_urobilinogen",
	"urine_nitrite",
	"urine_leukocyte_esterase",
	"urine_red_blood_cell",
	"urine_white_blood_cell",

	// screening
	"left_vision",
	"right_vision",
	"left_hearing",
	"right_hearing",
	"intraocular_pressure_left",
	"intraocular_pressure_right",
}

// ClinicalFields is the closed set of clinical_data keys.
var ClinicalFields = []string{
	"document_type",
	"patient_name",
	"provider_name",
	"institution",
	"visit_date",
	"chief_complaint",
	"history_present_illness",
	"physical_examination",
	"assessment",
	"diagnosis",
	"treatment_plan",
	"medications",
	"follow_up",
	"imaging_findings",
	"lab_orders",
	"procedures",
	"vital_signs_narrative",
	"allergies_mentioned",
	"medical_history_mentioned",
	"social_history",
	"family_history",
	"review_of_systems",
	"clinical_notes",
	"discharge_instructions",
	"return_precautions",
	"summary",
}

// ImagingFields is the closed set of imaging_report keys.
var ImagingFields = []string{
	"exam_type",
	"body_part",
	"exam_date",
	"clinical_information",
	"clinical_indication",
	"technique",
	"contrast",
	"findings",
	"bones",
	"joints",
	"soft_tissues",
	"organs",
	"vessels",
	"measurements",
	"dimensions",
	"impression",
	"diagnosis",
	"recommendations",
	"follow_up",
	"comparison",
	"prior_studies",
	"limitations",
	"quality",
	"artifacts",
	"cardiovascular",
	"pulmonary",
	"gastrointestinal",
	"genitourinary",
	"neurological",
	"musculoskeletal",
	"severity",
	"urgency",
	"notes",
	"radiologist",
}

// TestFieldAliases maps common model spellings onto canonical test keys.
var TestFieldAliases = map[string]string{
	"temperature":          "body_temperature",
	"temp":                 "body_temperature",
	"heart_rate":           "pulse",
	"pulse_rate":           "pulse",
	"hr":                   "pulse",
	"bp":                   "blood_pressure",
	"systolic":             "systolic_blood_pressure",
	"systolic_bp":          "systolic_blood_pressure",
	"diastolic":            "diastolic_blood_pressure",
	"diastolic_bp":         "diastolic_blood_pressure",
	"spo2":                 "oxygen_saturation",
	"sp_o2":                "oxygen_saturation",
	"o2_saturation":        "oxygen_saturation",
	"oxygen_level":         "oxygen_saturation",
	"body_mass_index":      "bmi",
	"body_weight":          "weight",
	"body_height":          "height",
	"wbc":                  "white_blood_cell",
	"rbc":                  "red_blood_cell",
	"hgb":                  "hemoglobin",
	"hb":                   "hemoglobin",
	"hct":                  "hematocrit",
	"mcv":                  "mean_corpuscular_volume",
	"mch":                  "mean_corpuscular_hemoglobin",
	"mchc":                 "mean_corpuscular_hemoglobin_concentration",
	"rdw":                  "red_cell_distribution_width",
	"plt":                  "platelet",
	"platelets":            "platelet",
	"platelet_count":       "platelet",
	"esr":                  "erythrocyte_sedimentation_rate",
	"fbs":                  "fasting_blood_glucose",
	"fasting_glucose":      "fasting_blood_glucose",
	"hba1c":                "hemoglobin_a1c",
	"a1c":                  "hemoglobin_a1c",
	"hb_a1c":               "hemoglobin_a1c",
	"bun":                  "blood_urea_nitrogen",
	"egfr":                 "estimated_glomerular_filtration_rate",
	"co2":                  "carbon_dioxide",
	"alp":                  "alkaline_phosphatase",
	"ast":                  "aspartate_aminotransferase",
	"sgot":                 "aspartate_aminotransferase",
	"alt":                  "alanine_aminotransferase",
	"sgpt":                 "alanine_aminotransferase",
	"ggt":                  "gamma_glutamyl_transferase",
	"ldh":                  "lactate_dehydrogenase",
	"cholesterol":          "total_cholesterol",
	"hdl":                  "hdl_cholesterol",
	"ldl":                  "ldl_cholesterol",
	"tg":                   "triglycerides",
	"tsh":                  "thyroid_stimulating_hormone",
	"ft3":                  "free_t3",
	"ft4":                  "free_t4",
	"tibc":                 "total_iron_binding_capacity",
	"crp":                  "c_reactive_protein",
	"hs_crp":               "high_sensitivity_c_reactive_protein",
	"ck":                   "creatine_kinase",
	"pt":                   "prothrombin_time",
	"inr":                  "international_normalized_ratio",
	"aptt":                 "activated_partial_thromboplastin_time",
	"afp":                  "alpha_fetoprotein",
	"cea":                  "carcinoembryonic_antigen",
	"psa":                  "prostate_specific_antigen",
	"hbs_ag":               "hepatitis_b_surface_antigen",
	"hbsag":                "hepatitis_b_surface_antigen",
	"anti_hbs":             "hepatitis_b_surface_antibody",
	"anti_hcv":             "hepatitis_c_antibody",
	"vitamin_d_25_hydroxy": "vitamin_d",
	"25_hydroxy_vitamin_d": "vitamin_d",
	"vision_left":          "left_vision",
	"vision_right":         "right_vision",
	"hearing_left":         "left_hearing",
	"hearing_right":        "right_hearing",
	"respiration_rate":     "respiratory_rate",
	"respirations":         "respiratory_rate",
	"waist":                "waist_circumference",
}

var (
	testFieldSet     = toSet(TestFields)
	clinicalFieldSet = toSet(ClinicalFields)
	imagingFieldSet  = toSet(ImagingFields)
)

// IsTestField reports whether name is a recognized test_result key.
func IsTestField(name string) bool { return testFieldSet[name] }

// IsClinicalField reports whether name is a recognized clinical_data key.
func IsClinicalField(name string) bool { return clinicalFieldSet[name] }

// IsImagingField reports whether name is a recognized imaging_report key.
func IsImagingField(name string) bool { return imagingFieldSet[name] }

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
