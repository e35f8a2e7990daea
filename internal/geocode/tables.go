package geocode

// Coord is a latitude/longitude pair.
type Coord struct {
	Lat float64
	Lon float64
}

// KazakhstanBBox approximates the serviced country. Provider results
// outside it are rejected and the offline tiers take over.
func KazakhstanBBox() BoundingBox {
	return BoundingBox{LatMin: 40.5, LatMax: 55.5, LonMin: 50.2, LonMax: 87.4}
}

// DefaultCityTable returns the offline coordinate table for Kazakhstan
// cities and oblasts. It backs resolver tiers 3-5 when the provider is
// unavailable, rate limited, or out of service area.
func DefaultCityTable() map[string]Coord {
	return map[string]Coord{
		"Алматы":                 {43.2220, 76.8512},
		"Астана":                 {51.1694, 71.4491},
		"Нур-Султан":             {51.1694, 71.4491},
		"Шымкент":                {42.3417, 69.5901},
		"Усть-Каменогорск":       {49.9481, 82.6278},
		"Семей":                  {50.4111, 80.2275},
		"Актобе":                 {50.2797, 57.2070},
		"Тараз":                  {42.9000, 71.3667},
		"Павлодар":               {52.2979, 76.9673},
		"Атырау":                 {47.0945, 51.9236},
		"Костанай":               {53.2141, 63.6246},
		"Кызылорда":              {44.8481, 65.5097},
		"Уральск":                {51.2333, 51.3667},
		"Петропавловск":          {54.8694, 69.1568},
		"Актау":                  {43.6415, 51.1727},
		"Темиртау":               {50.0597, 72.9594},
		"Туркестан":              {43.3000, 68.2667},
		"Кокшетау":               {53.2837, 69.3921},
		"Талдыкорган":            {45.0167, 78.3667},
		"Экибастуз":              {51.7167, 75.3333},
		"Рудный":                 {52.9667, 63.1167},
		"Жезказган":              {47.8000, 67.7333},
		"Балхаш":                 {46.8500, 74.9833},
		"Аксу":                   {52.0350, 76.9025},
		"Жанаозен":               {43.3333, 52.8667},
		"Сарань":                 {49.8167, 72.8833},
		"Шахтинск":               {49.7167, 72.6000},
		"Аркалык":                {50.2500, 66.9167},
		"Кентау":                 {43.5167, 68.5000},
		"Ленгер":                 {42.1667, 69.8833},
		"Бадам":                  {42.2667, 70.0000},
		"Шардара":                {41.2667, 68.0667},
		"Тургень":                {43.5000, 77.5000},
		"Красный Яр":             {51.5000, 70.5000},
		"Кокпекты":               {49.0333, 81.1333},
		"Осакаровка":             {50.1000, 72.5333},
		"Шортанды":               {51.6833, 71.0167},
		"Индербор":               {48.5500, 51.8000},
		"Конаев":                 {43.8667, 77.0667},
		"Капчагай":               {43.8667, 77.0667},
		"Кокпек":                 {43.8000, 78.0000},
		"Бескарагай":             {51.5000, 81.5000},
		"Косшы":                  {51.1833, 71.6500},
		"Кыргауылды":             {43.6833, 76.9000},
		"Бейнеу":                 {45.2667, 55.1333},
		"Жаркент":                {44.1667, 80.0000},
		"Откалык":                {43.5500, 68.3000},
		"Степногорск":            {52.3500, 71.8833},
		"Каратау":                {43.1833, 70.4667},
		"Каскелен":               {43.1983, 76.6217},
		"Талгар":                 {43.3000, 77.2667},
		"Есик":                   {43.3500, 77.4333},
		"Кандыагаш":              {49.4667, 57.4333},
		"Лисаковск":              {52.5500, 62.5000},
		"Байконур":               {45.6200, 63.3028},
		"Жетысай":                {40.7667, 68.3333},
		"Казалинск":              {45.7667, 62.1000},
		"Аральск":                {46.7833, 61.6667},
		"Кызылжар":               {54.8694, 69.1568},
		"Курчатов":               {50.7333, 78.5333},
		"Каражал":                {47.9167, 70.8000},
		"Сатпаев":                {47.9000, 67.5333},
		"Приозёрск":              {46.0833, 73.9333},
		"Каратобе":               {50.6167, 60.0000},
		"Хромтау":                {50.2500, 58.4500},
		"Шалкар":                 {47.8333, 59.6000},
		"Кандагач":               {49.4667, 57.4333},
		"Эмба":                   {48.8333, 58.1500},
		"Жем":                    {48.0500, 56.4667},
		"Курган":                 {54.8694, 69.1568},
		"Тобыл":                  {53.2141, 63.6246},
		"Магнитогорск":           {53.2141, 63.6246},
		"Бурабай":                {53.0667, 70.2500},
		"Щучинск":                {52.9333, 70.2000},
		"Карагандинская":         {49.8047, 73.1094},
		"Алматинская":            {43.2220, 76.8512},
		"Акмолинская":            {51.1694, 71.4491},
		"Актюбинская":            {50.2797, 57.2070},
		"Атырауская":             {47.0945, 51.9236},
		"Восточно-Казахстанская": {49.9481, 82.6278},
		"Жамбылская":             {42.9000, 71.3667},
		"Западно-Казахстанская":  {51.2333, 51.3667},
		"Костанайская":           {53.2141, 63.6246},
		"Кызылординская":         {44.8481, 65.5097},
		"Мангистауская":          {43.6415, 51.1727},
		"Павлодарская":           {52.2979, 76.9673},
		"Северо-Казахстанская":   {54.8694, 69.1568},
		"Туркестанская":          {43.3000, 68.2667},
		"ЮКО":                    {42.3417, 69.5901},
		"Mangystau":              {43.6415, 51.1727},
		"Абайская":               {50.4111, 80.2275},
		"Улытауская":             {47.8000, 67.7333},
		"Жетысуская":             {45.0167, 78.3667},
		"Семипалатинская":        {50.4111, 80.2275},
	}
}

// DefaultOfficeCoords returns city-level coordinates for every service
// office. Used to backfill business units imported without coordinates.
func DefaultOfficeCoords() map[string]Coord {
	return map[string]Coord{
		"Актау":            {43.6356, 51.1683},
		"Актобе":           {50.3002, 57.1541},
		"Алматы":           {43.2183, 76.8932},
		"Астана":           {51.1295, 71.4431},
		"Атырау":           {47.1180, 51.9706},
		"Караганда":        {49.8156, 73.0833},
		"Кокшетау":         {53.2828, 69.3786},
		"Костанай":         {53.2146, 63.6319},
		"Кызылорда":        {44.8249, 65.5026},
		"Павлодар":         {52.2856, 76.9412},
		"Петропавловск":    {54.8617, 69.1394},
		"Тараз":            {42.8896, 71.3532},
		"Уральск":          {51.2040, 51.3705},
		"Усть-Каменогорск": {49.9482, 82.6280},
		"Шымкент":          {42.3154, 69.5870},
	}
}

// DefaultAliases maps common Latin-script spellings of office cities and
// oblasts to their Cyrillic canonical names. Unmapped names pass through
// the resolver unchanged.
func DefaultAliases() map[string]string {
	return map[string]string{
		// Office cities
		"aktau":           "Актау",
		"aktobe":          "Актобе",
		"aktyubinsk":      "Актобе",
		"almaty":          "Алматы",
		"alma-ata":        "Алматы",
		"almaata":         "Алматы",
		"astana":          "Астана",
		"nur-sultan":      "Астана",
		"nursultan":       "Астана",
		"atyrau":          "Атырау",
		"karaganda":       "Караганда",
		"karagandy":       "Караганда",
		"kokshetau":       "Кокшетау",
		"kokchetav":       "Кокшетау",
		"kostanay":        "Костанай",
		"kustanai":        "Костанай",
		"kyzylorda":       "Кызылорда",
		"pavlodar":        "Павлодар",
		"petropavlovsk":   "Петропавловск",
		"taraz":           "Тараз",
		"zhambyl":         "Тараз",
		"uralsk":          "Уральск",
		"oral":            "Уральск",
		"ust-kamenogorsk": "Усть-Каменогорск",
		"ust kamenogorsk": "Усть-Каменогорск",
		"oskemen":         "Усть-Каменогорск",
		"shymkent":        "Шымкент",
		"chimkent":        "Шымкент",
		"semey":           "Семей",
		"semipalatinsk":   "Семей",
		// Oblasts / regions
		"akmola":           "Акмолинская",
		"akmolinsk":        "Акмолинская",
		"aktobe region":    "Актюбинская",
		"almaty region":    "Алматинская",
		"atyrau region":    "Атырауская",
		"east kazakhstan":  "Восточно-Казахстанская",
		"zhambyl region":   "Жамбылская",
		"west kazakhstan":  "Западно-Казахстанская",
		"karaganda region": "Карагандинская",
		"kostanay region":  "Костанайская",
		"kyzylorda region": "Кызылординская",
		"mangystau":        "Мангистауская",
		"pavlodar region":  "Павлодарская",
		"north kazakhstan": "Северо-Казахстанская",
		"turkestan region": "Туркестанская",
		"south kazakhstan": "Туркестанская",
	}
}
