package lang

// Curated character sets that exist in exactly one Chinese script. Hit rates
// against these decide simplified vs traditional.
const (
	simplifiedOnly = "万与专业丛东丝两严丧个临为举么义乐习书买乱争于亏云亚产亲亵仅从仓仪们价众优伙会伞伟传伤伦体" +
		"余佣佥侠侣侥侦侧侨俭债倾偿儿克兑党兰关兴养兽内册写军农冯冲决况冻净准凉减凑凤凭凯击创别" +
		"刘则刚剂剑务动劳势勋区医华协单卖卢卫厂厅历厉压县双发变叙电号叹后吓吕启员呙听吴呜咏响哑" +
		"国图圆圣场坏块坚坛坟坠垄垦处备复够头夸夹夺奋妇妈妆娄娱婴孙学宁宝实审宪宫对寻导层屉届属岁"

	traditionalOnly = "萬與專業叢東絲兩嚴喪個臨為舉麼義樂習書買亂爭於虧雲亞產親褻僅從倉儀們價眾優夥會傘偉傳傷倫體" +
		"餘傭僉俠侶僥偵側僑儉債傾償兒剋兌黨蘭關興養獸內冊寫軍農馮衝決況凍淨準涼減湊鳳憑凱擊創別" +
		"劉則剛劑劍務動勞勢勳區醫華協單賣盧衛廠廳歷厲壓縣雙發變敘電號嘆後嚇呂啟員咼聽吳嗚詠響啞" +
		"國圖圓聖場壞塊堅壇墳墜壟墾處備復夠頭誇夾奪奮婦媽妝婁娛嬰孫學寧寶實審憲宮對尋導層屜屆屬歲"
)

var (
	simplifiedSet  = runeSet(simplifiedOnly)
	traditionalSet = runeSet(traditionalOnly)
)

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
