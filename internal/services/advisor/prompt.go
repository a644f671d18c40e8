package advisor

import "strings"

const systemPrompt = `You are an agronomy assistant for Indian farmers. Use the provided tools to gather location, weather and soil data and to rank crops. Never invent tool results. Answer with JSON only.`

const queryTemplate = `
Analyze the weather for PIN code {{pin}} in India over the past 30 days.
Fetch coordinates using get_location_by_zip, then weather data using get_weather_analysis or analyze_weather,
and soil type using get_soil_type.

Summarize in an intermediate JSON format, including:
- "temperature": "min–max °C" (e.g., "20–30 °C")
- "precipitation": total as string (e.g., "150 cm" or "150–300 cm")
- "humidity": average as string (e.g., "60–80 %")
- "indian_soil_types": array of predominant Indian soil types from the soil API (e.g., ["Clay", "Alluvial"])
- "fao_soil_types": array of the WRB soil types from the soil API
- "soil_moisture": "Low", "Medium", or "High"

Then, use this intermediate JSON as climate_json with the recommend_crops tool to get top 5 crop recommendations with their scores.

Finally, assess if '{{crop}}' is a good choice: find its rank and score in the top 5 (if not in top 5, rank="N/A", score=0).
If score <= 0.5, include "alternatives" as array of top 3 recommended crop names; else omit "alternatives".

Output ONLY the final JSON in this exact format, no other text:
{
  "weather": {
    "temperature": "from intermediate",
    "precipitation": "from intermediate",
    "humidity": "from intermediate"
  },
  "soil": {
    "indianTypes": [array from intermediate indian_soil_types],
    "moisture": "from intermediate soil_moisture"
  },
  "recommendedCrops": [
    {"name": "crop1", "score": score1}
  ],
  "cropSuitability": {
    "cropName": "{{crop}}",
    "score": score,
    "rank": rank,
    "alternatives": ["top3"]
  },
  "insights": "Insights from the analysis that why the crop is suitable or not and also what can be better for the crop"
}
`

func buildQuery(pin, crop string) string {
	return strings.NewReplacer("{{pin}}", pin, "{{crop}}", crop).Replace(queryTemplate)
}
